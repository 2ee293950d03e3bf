package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/hmjahid/school-management-system-sub002/core/user"
)

// cancelNotification cancels a pending notification before its next occurrence fires.
func (cli *commandLine) cancelNotification(id string) error {
	n, err := cli.notifSvc.Cancel(context.Background(), user.User{}, id)
	if err != nil {
		return err
	}
	fmt.Printf("notification %q (%s) cancelled\n", n.Name, n.ID)
	return nil
}

func (cli *commandLine) notificationStats() error {
	stats, err := cli.notifSvc.Stats(context.Background(), user.User{})
	if err != nil {
		return err
	}

	statuses := make([]string, 0, len(stats))
	for status := range stats {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("%-12s %d\n", status, stats[status])
	}
	return nil
}
