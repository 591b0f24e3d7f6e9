// Package gitrepo provides the Git operations the provisioner needs.
//
// All Git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git. This approach:
//   - Uses the exact same Git behavior (SSH config, credential helpers,
//     known_hosts) the user sees in their terminal
//   - Keeps credential handling entirely outside this tool
//
// The Manager struct provides Clone plus a few read-only inspection helpers.
package gitrepo
