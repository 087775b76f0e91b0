/*
Package clients provides the node side of the registration protocol.

RegistrationClient posts registrations the way a node does: every configured
node goes into data.nodes keyed by its node number, together with the node's
IAX2 port, and the server answers with the address it saw, the port and the
refresh interval after which the node should register again.

	client := clients.NewRegistrationClient("https://127.0.0.1:8443", clients.WithInsecureTLS())
	nodes := api.NewNodeSet()
	nodes.Add("2000", api.NodeInfo{Node: "2000", Passwd: "secret"})
	resp, err := client.Register(ctx, nodes, 4569)

Non-200 responses are returned as *RequestError with the status code and the
server's error message, so callers can tell the failure endpoints apart.
*/
package clients
