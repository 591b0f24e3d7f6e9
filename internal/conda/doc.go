// Package conda drives the conda environment manager.
//
// Two operations are exposed: Update, which creates or updates a named
// environment from an environment file, and Activate, which resolves the
// environment's prefix and returns an Activation describing the process
// environment `conda activate` would produce.
//
// A child process cannot change its parent's environment, so activation
// is reproduced here instead of shelling out to `conda activate`: the
// environment's binary directories are prepended to PATH and the conda
// bookkeeping variables are set. Activation.Apply installs that state in
// the current process; Activation.Environ builds it for a child.
//
// The environment file itself is never read by this package; conda owns
// its format.
package conda
