// Package provision implements the provisioning run: update the conda
// environment, activate it, then remove, clone and editable-install each
// repository in order.
//
// Steps run strictly sequentially and the first failure aborts the run.
// Nothing is retried and nothing is rolled back: a repository directory
// removed before a failed clone stays removed.
//
// The external tools are reached through small interfaces (EnvManager,
// Cloner, Installer, Remover) so tests can substitute recording fakes.
package provision
