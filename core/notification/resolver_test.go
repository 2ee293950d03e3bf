package notification_test

import (
	"context"
	"testing"

	"github.com/hmjahid/school-management-system-sub002/core/notification"
	"github.com/hmjahid/school-management-system-sub002/core/user"
	dummydb "github.com/hmjahid/school-management-system-sub002/storage/database/dummy"
	testutil "github.com/hmjahid/school-management-system-sub002/tests"
)

type resolverFixture struct {
	db       *dummydb.DB
	usrRepo  user.Repository
	usrSvc   *user.Service
	prefRepo notification.PreferenceStore
	resolver *notification.Resolver
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo)
	prefRepo := dummydb.NewPreferenceRepository(db)
	return &resolverFixture{
		db:       db,
		usrRepo:  usrRepo,
		usrSvc:   usrSvc,
		prefRepo: prefRepo,
		resolver: notification.NewResolver(usrSvc, prefRepo),
	}
}

func deliveryIDs(deliveries []notification.Delivery) []string {
	ids := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		ids = append(ids, d.User.ID)
	}
	return ids
}

func TestResolver_Resolve_dedupesUnion(t *testing.T) {
	fix := newResolverFixture(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, fix.usrRepo, "Teacher", "teach", "teach@test.cd", "", []string{user.RoleTeacher}, true)
	otherTeacher := testutil.CreateUser(t, fix.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, fix.usrRepo, "Student", "stud", "stud@test.cd", "", []string{user.RoleStudent}, true)

	// teacher is referenced both directly and via their role
	recipients := []notification.Recipient{
		{Kind: notification.RecipientRole, Role: user.RoleTeacher},
		{Kind: notification.RecipientUser, User: teacher.ID},
	}
	deliveries, err := fix.resolver.Resolve(ctx, recipients, []string{notification.ChannelMail}, "announcement")
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}

	if len(deliveries) != 2 {
		t.Fatalf("Resolve() returned %d deliveries, want 2 (got %v)", len(deliveries), deliveryIDs(deliveries))
	}
	seen := make(map[string]int)
	for _, d := range deliveries {
		seen[d.User.ID]++
	}
	if seen[teacher.ID] != 1 {
		t.Errorf("teacher appears %d times, want exactly once", seen[teacher.ID])
	}
	if seen[otherTeacher.ID] != 1 {
		t.Errorf("other teacher appears %d times, want exactly once", seen[otherTeacher.ID])
	}
}

func TestResolver_Resolve_channelPreferences(t *testing.T) {
	fix := newResolverFixture(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, fix.usrRepo, "NoSMS", "nosms", "nosms@test.cd", "", []string{user.RoleTeacher}, true)
	both := testutil.CreateUser(t, fix.usrRepo, "Both", "both", "both@test.cd", "", []string{user.RoleTeacher}, true)
	optedOut := testutil.CreateUser(t, fix.usrRepo, "None", "none", "none@test.cd", "", []string{user.RoleTeacher}, true)

	prefs := dummydb.NewPreferenceRepository(fix.db)
	if err := prefs.SetAllowedChannels(ctx, usr.ID, "fee_reminder", []string{notification.ChannelMail}); err != nil {
		t.Fatalf("SetAllowedChannels() failed: %v", err)
	}
	if err := prefs.SetAllowedChannels(ctx, optedOut.ID, "fee_reminder", []string{}); err != nil {
		t.Fatalf("SetAllowedChannels() failed: %v", err)
	}

	recipients := []notification.Recipient{{Kind: notification.RecipientRole, Role: user.RoleTeacher}}
	channels := []string{notification.ChannelMail, notification.ChannelSMS}

	deliveries, err := fix.resolver.Resolve(ctx, recipients, channels, "fee_reminder")
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}

	got := make(map[string][]string, len(deliveries))
	for _, d := range deliveries {
		got[d.User.ID] = d.Channels
	}

	if chans := got[usr.ID]; len(chans) != 1 || chans[0] != notification.ChannelMail {
		t.Errorf("opted-out-of-sms user channels = %v, want [mail]", chans)
	}
	if chans := got[both.ID]; len(chans) != 2 {
		t.Errorf("no-preference user channels = %v, want both requested", chans)
	}
	if _, ok := got[optedOut.ID]; ok {
		t.Error("user opted out of every channel still resolved")
	}
}

func TestResolver_Resolve_skipsInactiveAndDangling(t *testing.T) {
	fix := newResolverFixture(t)
	ctx := context.Background()

	inactive := testutil.CreateUser(t, fix.usrRepo, "Gone", "gone", "gone@test.cd", "", []string{user.RoleStudent}, false)
	active := testutil.CreateUser(t, fix.usrRepo, "Here", "here", "here@test.cd", "", []string{user.RoleStudent}, true)

	recipients := []notification.Recipient{
		{Kind: notification.RecipientUser, User: inactive.ID},
		{Kind: notification.RecipientUser, User: active.ID},
		{Kind: notification.RecipientUser, User: "4cc72a2b-47ce-4b7e-a8fd-54b87d9d5a2f"}, // deleted since scheduling
	}
	deliveries, err := fix.resolver.Resolve(ctx, recipients, []string{notification.ChannelMail}, "announcement")
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].User.ID != active.ID {
		t.Errorf("Resolve() = %v, want only the active user", deliveryIDs(deliveries))
	}
}

func TestResolver_Resolve_groupAndEveryone(t *testing.T) {
	fix := newResolverFixture(t)
	ctx := context.Background()

	a := testutil.CreateUser(t, fix.usrRepo, "A", "ua", "ua@test.cd", "", []string{user.RoleStudent}, true)
	b := testutil.CreateUser(t, fix.usrRepo, "B", "ub", "ub@test.cd", "", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, fix.usrRepo, "C", "uc", "uc@test.cd", "", []string{user.RoleTeacher}, true)

	grp := user.Group{ID: "0c9df5e4-2c3f-45a2-a078-5fad92e72e68", Name: "Form 1A"}
	fix.db.AddGroup(grp, a.ID, b.ID)

	deliveries, err := fix.resolver.Resolve(ctx,
		[]notification.Recipient{{Kind: notification.RecipientGroup, Group: grp.ID}},
		[]string{notification.ChannelMail}, "announcement")
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	if len(deliveries) != 2 {
		t.Errorf("group Resolve() = %v, want the 2 members", deliveryIDs(deliveries))
	}

	deliveries, err = fix.resolver.Resolve(ctx,
		[]notification.Recipient{{Kind: notification.RecipientEveryone}},
		[]string{notification.ChannelMail}, "announcement")
	if err != nil {
		t.Fatalf("Resolve() unexpected error = %v", err)
	}
	if len(deliveries) != 3 {
		t.Errorf("everyone Resolve() = %v, want all 3 active users", deliveryIDs(deliveries))
	}
}
