// Package materialize builds a component's directory inside an environment
// tree from its upstream checkout.
//
// The work is split into independent, idempotent steps:
//
//   - SyncDirectory copies new or changed files from the checkout.
//   - SynthesizeEnvFile produces the component's .env from the first
//     template found and the environment's substitution rules.
//   - SelectComposeFile picks the compose file for the environment and mode.
//   - PrepareCompose strips version and container_name lines from the
//     selected file and writes a label overlay next to it.
//
// Env files are edited through Document, which keeps every line it does
// not touch byte for byte.
package materialize
