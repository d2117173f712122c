// Package expconf provides serializable experiment configuration for Go
// applications: declarable configuration nodes converted to and from nested
// plain data, with registry-backed polymorphic resolution for nodes whose
// concrete schema is chosen by name at load time.
//
// Features:
//   - Explicit schema declaration per node, with struct-based defaults
//   - Serialization to and from nested plain-data structures
//   - Link nodes: pick a registered implementation by name, then configure
//     it with its own independent schema
//   - Opt-in rule validation (required fields, types, ranges, choices)
//   - Snapshot/restore of node state between sequential runs
//   - TOML, JSON and YAML files, environment and CLI overrides with
//     deep-merged precedence
//   - Poll-based file watching with debounced reload
//
// Quick Start:
//
//	trainer := expconf.New("TrainerConfig")
//	trainer.Declare("epochs", 10)
//	trainer.Declare("with_valid", true)
//
//	optimizer := expconf.NewLink("OptimConfig", "optimizer")
//	trainer.Set("optimizer", optimizer)
//
//	expconf.SetResolver(registry.Default())
//	expconf.BackupAll()
//
//	err := expconf.NewLoader().
//	    WithFile("experiment.yml").
//	    WithEnv("MYEXP_").
//	    WithArgs(os.Args[1:]).
//	    Apply(trainer)
//
// A link node's structure carries the chosen implementation name under
// "type" and the implementation's own configuration under "class_data":
//
//	trainer.FromStructure(map[string]any{
//	    "optimizer": map[string]any{"type": "Adam", "lr": 0.01},
//	})
//
// Between runs sharing one process, RenewAll restores every node to the
// state captured by BackupAll.
//
// Nodes are mutated in place and are not safe for concurrent use; the
// package assumes one active configuration pass at a time.
package expconf
