/*
Package api holds the wire types and server configuration of the mock node
registration server.

The server emulates the endpoint nodes register with, so that client-side
registration logic can be tested without a real backend. Subpackages:

  - registrationhandler: the registration endpoint and the fixed-failure endpoints
  - server: HTTP(S) listener, routing, health checks and lifecycle
  - clients: the node side of the protocol

# Registration request

	{"port": 4569, "data": {"nodes": {"<node_id>": {"node": "...", "passwd": "...", "remote": 0}}}}

# Registration response

	{"ipaddr": "<client ip>", "port": 4569, "refresh": 60, "data": "successfully registered"}

Errors are reported as {"error": "<message>"}.
*/
package api
