// Package search answers keyword queries over the document index with
// the caller's visibility enforced on every result.
//
// A query is free text plus optional filters:
//
//	travel policy department:HR ext:pdf
//	project:"atlas north" budget
//
// The store retrieves candidates by the most selective term; the
// service then enforces the remaining terms and filters in memory,
// evaluates the caller's profile against each candidate's stored
// requirement, and returns only the documents the caller could also
// open directly. Hidden candidates leave no trace in the response.
//
//	svc, _ := search.NewService(store, vocabulary, search.Config{Metrics: metrics})
//	resp, err := svc.Search(ctx, viewer, search.Request{Query: "onboarding checklist"})
//
// Results rank by lexical relevance (title match position, then
// content hits) with a snippet cut around the first match.
package search
