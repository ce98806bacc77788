// Package tickets implements support ticket intake: team suggestion,
// creation and per-user listing.
//
// Every ticket carries two teams. SuggestedTeam is what the Suggester
// proposed from the ticket text; SelectedTeam is what the ticket was
// actually routed to, which is the suggestion unless the creator chose
// a team explicitly. Keeping both makes suggestion quality visible in
// the stored data.
//
// The default Suggester is lexical: it tokenizes the title and
// description and scores each team by keyword overlap, falling back to
// General below a confidence threshold. Richer implementations (for
// example an embedding-based classifier) plug in through the Suggester
// interface; a suggester failure never blocks ticket creation.
//
//	svc, err := tickets.NewService(store, tickets.Config{
//		Audit:   auditLogger,
//		Metrics: metrics,
//	})
//	if err != nil {
//		return err
//	}
//	ticket, err := svc.Create(ctx, caller, tickets.CreateRequest{
//		Title: "laptop cannot reach the office wifi",
//	})
//
// Removing a user removes their tickets: wiring registers the store's
// DeleteTicketsByUser as a cascade hook on the profile service.
package tickets
