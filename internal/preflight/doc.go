// Package preflight provides readiness checks for the filesystem paths and
// endpoints sessionq depends on.
//
// The daemon runs RunAll at startup and reports the results in its status;
// the CLI "sessionq status" command uses the individual checks
// (CheckDirectoryAccess, CheckHTTPAPI) to display health when the daemon is
// unreachable.
package preflight
