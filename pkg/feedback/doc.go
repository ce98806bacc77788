// Package feedback records per-user ratings of answered messages.
//
// The API speaks "up" and "down"; the store keeps the original 👍 and
// 👎 glyphs, so the rating column reads the same way it always has.
// Entries reference the rated message by ID only. Producing and
// rendering the messages themselves is someone else's job.
//
//	svc, err := feedback.NewService(store, feedback.Config{Audit: auditLogger})
//	if err != nil {
//		return err
//	}
//	fb, err := svc.Record(ctx, caller, feedback.RecordRequest{
//		MessageID: "msg-42",
//		Rating:    "up",
//	})
//
// Removing a user removes their feedback: wiring registers the store's
// DeleteFeedbackByUser as a cascade hook on the profile service.
package feedback
