// Package shell runs the external tools the provisioner drives (conda,
// git, pip) as child processes.
//
// Every collaborator package funnels through Runner so that output
// handling and exit-status mapping behave the same for all of them:
//   - stdout and stderr stream to the configured writers while the command runs
//   - the tail of stderr is kept for error messages
//   - a non-zero exit becomes an *ExitError carrying the child's status,
//     which model.WrapCommandError turns into the process exit code
package shell
