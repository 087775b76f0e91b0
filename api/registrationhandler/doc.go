/*
Package registrationhandler serves the mock node registration API.

Handler answers the registration endpoint:

  - POST / records every node in the submitted body and echoes back the
    address the request came from, the declared port and the refresh interval.
  - GET / returns every stored record together with the submission count.

A body that does not parse as JSON (empty, truncated or broken syntax) is
answered with 400 and {"error":"Invalid JSON"}. JSON of the wrong shape, such
as a top-level array or a string where a port is expected, is answered with 500
and {"error":"Internal server error"}, as is anything else that goes wrong while
handling a request, panics included. Keys are matched case-sensitively. A
rejected body leaves the store untouched.

FailureInjector binds fixed error responses to paths so registration clients
can exercise their error handling. DefaultFailureEndpoints lists the standard
set: /fail (500), /unauthorized (401) and /notfound (404).

The response logic is exposed independently of net/http through
Handler.HandlePost, Handler.HandleGet and FailureHandler.Handle, each returning
the status code, content type and body to write.
*/
package registrationhandler
