// Package http provides the REST command surface for terminal sessions.
//
// Endpoints:
//   - POST   /terminals                   create with a generated id (201)
//   - PUT    /terminals/:segment          create, idempotent
//   - GET    /terminals                   list
//   - GET    /terminals/:segment          session info
//   - DELETE /terminals/:segment          close (204, also for unknown ids)
//   - POST   /terminals/:segment/spawn    launch the shell; body {shell,args,cwd,env}
//   - POST   /terminals/:segment/write    body {data}
//   - POST   /terminals/:segment/resize   body {rows,cols}
//   - GET    /terminals/:segment/buffer   replayable recent output
//   - GET    /health
//
// Errors are returned as {"error": message, "code": kind}; see classify for
// the status mapping.
package http
