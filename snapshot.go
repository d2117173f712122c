package expconf

import "sync"

// Backup captures the node's current structure as its original value.
// The first call wins; later calls are no-ops so the snapshot is never
// silently overwritten.
func (n *Node) Backup() map[string]any {
	if n.snapshot == nil {
		n.snapshot = n.ToStructure()
	}
	return n.snapshot
}

// Renew restores the node to its backed-up structure. Without a prior
// Backup it is a no-op. Used to reset shared configuration between
// sequential runs in one process.
func (n *Node) Renew() {
	if n.snapshot == nil {
		return
	}
	// FromStructure deep-copies, so the snapshot itself stays intact.
	n.FromStructure(n.snapshot)
}

// nodeTracker records every node created through New and NewLink so
// process-wide backup and renew can reach all of them, including nested
// schemas, without a separate registration step.
var nodeTracker = struct {
	mu    sync.Mutex
	nodes []*Node
}{}

func trackNode(n *Node) {
	nodeTracker.mu.Lock()
	nodeTracker.nodes = append(nodeTracker.nodes, n)
	nodeTracker.mu.Unlock()
}

func trackedNodes() []*Node {
	nodeTracker.mu.Lock()
	defer nodeTracker.mu.Unlock()
	out := make([]*Node, len(nodeTracker.nodes))
	copy(out, nodeTracker.nodes)
	return out
}

// BackupAll backs up every live node. Call once after all schemas are
// declared, before the first configuration pass.
func BackupAll() {
	for _, n := range trackedNodes() {
		n.Backup()
	}
}

// RenewAll restores every live node that has a backup.
func RenewAll() {
	for _, n := range trackedNodes() {
		n.Renew()
	}
}
