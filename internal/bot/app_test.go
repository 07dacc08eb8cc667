package bot

import (
	"testing"

	"github.com/botmesero/mesero/internal/appconfig"
)

func TestSeedersFollowConfig(t *testing.T) {
	cfg := &appconfig.Config{}
	if got := Seeders(cfg); len(got) != 0 {
		t.Fatalf("seeders without seed_demo = %d", len(got))
	}
	cfg.App.SeedDemo = true
	if got := Seeders(cfg); len(got) != 1 {
		t.Fatalf("seeders with seed_demo = %d", len(got))
	}
}
