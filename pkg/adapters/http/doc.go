/*
Package http exposes form sessions over a JSON HTTP API routed with chi.

Routes:

	GET    /health
	GET    /questionnaires
	POST   /sessions                 {"questionnaire": ref, "response": seed?}
	GET    /sessions/{id}
	PUT    /sessions/{id}/answers    {"answers": [{"ref": linkId-or-key, "index": n, "value": v}]}
	POST   /sessions/{id}/items      {"ref": linkId-or-key}
	POST   /sessions/{id}/validate   {"submit": bool}
	DELETE /sessions/{id}
	GET    /events?session_id=id
	GET    /openapi.yaml
	GET    /swagger

Every session route answers with a SessionView. /events streams session views as
server-sent events, or questionnaire reload notifications when no session id is given
and the loader can watch for changes.

Requests to documented routes are validated against the embedded OpenAPI document
(package api) before they reach a handler; a mismatch answers 400.
*/
package http
