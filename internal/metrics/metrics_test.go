package metrics

import "testing"

func TestRegistryGathersRegisteredCollectors(t *testing.T) {
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	WriteConflictRetries.Inc()
	SparesRecomputeDuration.Observe(0.05)

	families, err = Registry.Gather()
	if err != nil {
		t.Fatalf("gather after observations: %v", err)
	}

	var sawCounter, sawHistogram bool
	for _, fam := range families {
		switch fam.GetName() {
		case "inventory_write_conflict_retries_total":
			sawCounter = true
		case "inventory_spares_recompute_duration_seconds":
			sawHistogram = true
		}
	}
	if !sawCounter {
		t.Fatal("expected the write-conflict-retries counter to be registered")
	}
	if !sawHistogram {
		t.Fatal("expected the spares-recompute-duration histogram to be registered")
	}
}
