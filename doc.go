/*
Package http1conn implements the HTTP/1.x client connection core: the
request/response protocol engine that runs a pipeline of HTTP/1.0 and
HTTP/1.1 exchanges over a single byte-oriented transport.

The package sits between a connection pool and a transport. The pool
creates connections, hands them out and takes them back through the
Pool callbacks; the transport is anything with Read, Write and Close
(TCP, TLS, an in-memory pipe from http1connutil, a tunnel from
tunneldial). The core serializes request heads, negotiates
Expect: 100-continue, parses status lines, informational responses and
header blocks, and hands the caller a typed body stream (empty,
content-length, chunked, until-close or raw tunnel) whose completion
returns the connection to the pool.

Main entry points:

  - NewConn binds a transport to a pool.
  - Conn.SendRequest performs one exchange.
  - Response.Body streams the response payload.

Connections are not safe for concurrent use. At most one request may be
in flight per connection.
*/
package http1conn
