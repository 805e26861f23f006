// Package httputil provides the shared JSON response envelope for
// handlers.
//
// Every handler writes through these helpers instead of raw
// http.ResponseWriter calls, so the {success, message, data, details}
// shape stays consistent across endpoints.
package httputil
