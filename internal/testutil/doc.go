// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing personas, agent configurations and
// sessions, and a scripted model.Model that replays canned responses and
// failures. They are not intended for production usage.
package testutil
