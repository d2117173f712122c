// FILE: expconf/example/main.go
package main

import (
	"log"
	"os"

	"github.com/expconf/expconf"
	"github.com/expconf/expconf/registry"
)

const configFilePath = "experiment.toml"

// AdamOptimizer is a registered implementation with its own config schema.
type AdamOptimizer struct{}

func (AdamOptimizer) ConfigSchema() *expconf.Node {
	n := expconf.New("AdamConfig")
	n.MustDeclare("lr", 0.001).MustDeclare("weight_decay", 0.0)
	return n
}

// SGDOptimizer is a second implementation selectable by name.
type SGDOptimizer struct{}

func (SGDOptimizer) ConfigSchema() *expconf.Node {
	n := expconf.New("SGDConfig")
	n.MustDeclare("lr", 0.01).MustDeclare("momentum", 0.9)
	return n
}

func main() {
	defer func() {
		log.Println("---")
		log.Println("🧹 Cleaning up...")
		os.Remove(configFilePath)
	}()

	// =========================================================================
	// PART 1: REGISTRATION AND SCHEMA DECLARATION
	// Register selectable implementations, then declare the trainer schema
	// with a link node pointing at the optimizer category.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 1: Declaring schemas and registering implementations...")

	registry.MustRegister(registry.CategoryOptimizer, "Adam", AdamOptimizer{})
	registry.MustRegister(registry.CategoryOptimizer, "SGD", SGDOptimizer{})
	expconf.SetResolver(registry.Default())

	trainer := expconf.New("TrainerConfig")
	trainer.MustDeclare("epochs", int64(10)).MustDeclare("with_valid", true)
	trainer.MustDeclare("optimizer", expconf.NewLink("optimizer", registry.CategoryOptimizer))

	trainer.SetRule("epochs", expconf.Rule{Required: true, Type: "int", Min: expconf.Float(1)})

	log.Printf("✅ Declared fields: %v", trainer.FieldNames())

	// =========================================================================
	// PART 2: LOADING WITH LINK RESOLUTION
	// The optimizer block selects SGD by name; its payload lands in the
	// schema published by the SGD implementation.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 2: Loading configuration with link resolution...")

	content := []byte(`epochs = 50
with_valid = true

[optimizer]
type = "SGD"
lr = 0.05
`)
	if err := os.WriteFile(configFilePath, content, 0644); err != nil {
		log.Fatalf("❌ Failed to write config file: %v", err)
	}

	loader := expconf.NewLoader().
		WithFile(configFilePath).
		WithEnv("EXP_").
		WithValidation()
	if err := loader.Apply(trainer); err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	epochs, _ := trainer.Int64("epochs")
	optName, _ := trainer.String("optimizer.type")
	lr, _ := trainer.Float64("optimizer.class_data.lr")
	log.Printf("✅ Loaded: epochs=%d optimizer=%s lr=%g", epochs, optName, lr)

	// =========================================================================
	// PART 3: SNAPSHOT AND RESTORE
	// Back up the resolved state, mutate it, then renew to undo the edits.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 3: Snapshot and restore...")

	trainer.Backup()
	trainer.Set("epochs", int64(999))
	log.Printf("Mutated epochs: %v", mustInt(trainer, "epochs"))

	trainer.Renew()
	log.Printf("✅ Renewed epochs: %v", mustInt(trainer, "epochs"))

	// =========================================================================
	// PART 4: SERIALIZATION ROUND TRIP
	// Save the node back to disk and reload it into a fresh schema.
	// =========================================================================
	log.Println("---")
	log.Println("➡️  PART 4: Save and reload...")

	if err := trainer.Save(configFilePath); err != nil {
		log.Fatalf("❌ Failed to save configuration: %v", err)
	}

	fresh := expconf.New("TrainerConfig")
	fresh.MustDeclare("epochs", int64(10))
	fresh.MustDeclare("optimizer", expconf.NewLink("optimizer", registry.CategoryOptimizer))
	if err := fresh.FromFile(configFilePath); err != nil {
		log.Fatalf("❌ Failed to reload configuration: %v", err)
	}

	log.Printf("✅ Reloaded: epochs=%d optimizer=%s", mustInt(fresh, "epochs"), mustString(fresh, "optimizer.type"))
}

func mustInt(n *expconf.Node, path string) int64 {
	v, err := n.Int64(path)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	return v
}

func mustString(n *expconf.Node, path string) string {
	v, err := n.String(path)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	return v
}
