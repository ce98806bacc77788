// Package api assembles the HTTP surface of the access-control service:
// the gorilla/mux router, the middleware chain and every handler group.
//
// # Route map
//
//	GET    /health                                  liveness
//	GET    /ready                                   readiness (dependency checks)
//	GET    /metrics                                 Prometheus registry (when configured)
//
//	GET    /api/v1/me                               caller's resolved profile
//	POST   /api/v1/access/check                     evaluate a path or requirement
//	POST   /api/v1/search                           visibility-filtered keyword search
//	POST   /api/v1/tickets                          create an access ticket
//	GET    /api/v1/tickets                          caller's tickets
//	GET    /api/v1/teams                            routable teams
//	POST   /api/v1/feedback                         record feedback
//	GET    /api/v1/feedback                         caller's feedback
//
//	GET    /api/v1/admin/users                      list profiles
//	GET    /api/v1/admin/users/{email}/permissions  view a profile
//	PUT    /api/v1/admin/users/{email}/permissions  upsert a profile
//	DELETE /api/v1/admin/users/{email}              remove a user, cascading
//	GET    /api/v1/admin/audit/...                  audit trail (when a store is configured)
//
// Everything under /api/v1 runs behind authentication and rate
// limiting; the chain order is documented in pkg/middleware. The server
// implements http.Handler and leaves listener lifecycle to the caller:
//
//	srv, err := api.NewServer(api.Config{
//	    Profiles:      profilesSvc,
//	    Vocabulary:    vocabulary,
//	    Authenticator: authenticator,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", srv)
package api
