package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/wardstock/internal/models"
)

// StaffCmd shows hospital staff.
type StaffCmd struct {
	List StaffListCmd `cmd:"" help:"List staff of your hospital"`
}

// StaffListCmd lists the users sharing the caller's hospital.
type StaffListCmd struct {
	Search string `help:"Filter by username or email" short:"s"`
}

func (s *StaffListCmd) Run(ctx context.Context, globals *Globals) error {
	c, err := globals.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	staff, err := c.ListStaff(ctx)
	if err != nil {
		return apiError("failed to list staff", err)
	}
	staff = models.FilterStaff(staff, s.Search)

	out := globals.out()
	if len(staff) == 0 {
		fmt.Fprintln(out, "No staff found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tHOSPITAL")
	for _, u := range staff {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, orDash(u.Email), u.Role, orDash(u.HospitalName))
	}
	return w.Flush()
}
