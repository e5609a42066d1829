package units

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/clover-storm/unit-simulator/internal/geom"
)

func TestDefaultRegistrySpawn(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Validate(); err != nil {
		t.Fatalf("default registry invalid: %v", err)
	}

	u, err := r.Spawn("guard", 7, Enemy, geom.V(10, 20), 0)
	if err != nil {
		t.Fatalf("spawn guard: %v", err)
	}
	if u.ID != 7 || u.Faction != Enemy || u.DefinitionID != "guard" {
		t.Fatalf("unexpected identity %+v", u)
	}
	if u.HP != 90 || u.MaxHP != 90 || u.ShieldHP != 199 {
		t.Fatalf("unexpected health hp=%d max=%d shield=%d", u.HP, u.MaxHP, u.ShieldHP)
	}

	blob, err := r.Spawn("elixir_blob", 1, Friendly, geom.Zero, 50)
	if err != nil {
		t.Fatalf("spawn blob: %v", err)
	}
	if blob.HP != 50 || blob.MaxHP != 280 {
		t.Fatalf("expected hp override, got hp=%d max=%d", blob.HP, blob.MaxHP)
	}

	big, err := r.Spawn("elixir_blob", 2, Friendly, geom.Zero, 500)
	if err != nil {
		t.Fatalf("spawn big blob: %v", err)
	}
	if big.HP != 500 || big.MaxHP != 500 {
		t.Fatalf("expected max hp raised to the override, got hp=%d max=%d", big.HP, big.MaxHP)
	}

	if _, err := r.Spawn("dragon", 1, Friendly, geom.Zero, 0); !errors.Is(err, ErrUnknownDefinition) {
		t.Fatalf("expected ErrUnknownDefinition, got %v", err)
	}
}

func TestRegistryIDsSorted(t *testing.T) {
	ids := DefaultRegistry().IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("ids not sorted: %v", ids)
		}
	}
}

const sampleDefinitions = `
units:
  - unit_id: prince
    max_hp: 1200
    damage: 245
    move_speed: 4
    turn_speed: 0.1
    radius: 22
    role: Melee
    can_target: Ground|Building
    abilities:
      - type: charge
        damage_multiplier: 2
  - unit_id: wizard
    display_name: Wizard
    max_hp: 340
    damage: 130
    move_speed: 4
    turn_speed: 0.1
    radius: 18
    role: Ranged
    can_target: Ground,Air
    abilities:
      - type: splash
        radius: 40
        falloff: 0.5
      - type: status_effect
        effect: slow
        duration: 60
        magnitude: 0.35
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(sampleDefinitions))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	prince := defs[0]
	if prince.DisplayName != "prince" {
		t.Fatalf("expected display name defaulted to id, got %q", prince.DisplayName)
	}
	if !prince.CanTarget.Has(TargetBuilding) || prince.CanTarget.Has(TargetAir) {
		t.Fatalf("unexpected mask %v", prince.CanTarget)
	}
	charge, ok := FindAbility[Charge](prince.Abilities)
	if !ok {
		t.Fatalf("expected charge ability")
	}
	if charge.TriggerDistance != DefaultCharge().TriggerDistance || charge.DamageMultiplier != 2 {
		t.Fatalf("expected defaults overlaid, got %+v", charge)
	}

	wizard := defs[1]
	splash, ok := FindAbility[Splash](wizard.Abilities)
	if !ok || splash.Radius != 40 || splash.Falloff != 0.5 {
		t.Fatalf("unexpected splash %+v", splash)
	}
	status, ok := FindAbility[StatusEffect](wizard.Abilities)
	if !ok || status.Effect != EffectSlow || status.Duration != 60 {
		t.Fatalf("unexpected status effect %+v", status)
	}
}

func TestParseDefinitionsErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{name: "bad role", doc: "units:\n  - unit_id: a\n    max_hp: 1\n    role: Sniper\n"},
		{name: "bad layer", doc: "units:\n  - unit_id: a\n    max_hp: 1\n    role: Melee\n    layer: Water\n"},
		{name: "missing hp", doc: "units:\n  - unit_id: a\n    role: Melee\n"},
		{name: "unknown ability", doc: "units:\n  - unit_id: a\n    max_hp: 1\n    role: Melee\n    abilities:\n      - type: teleport\n"},
		{name: "bad falloff", doc: "units:\n  - unit_id: a\n    max_hp: 1\n    role: Melee\n    abilities:\n      - type: splash\n        falloff: 2\n"},
		{name: "duplicate", doc: "units:\n  - unit_id: a\n    max_hp: 1\n    role: Melee\n  - unit_id: a\n    max_hp: 1\n    role: Melee\n"},
		{name: "not yaml", doc: "units: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDefinitions([]byte(tc.doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadDefinitionsMergesAndValidates(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte(sampleDefinitions), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := LoadDefinitions(good)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !r.Has("prince") || !r.Has("golemite") {
		t.Fatalf("expected file units merged over defaults, got %v", r.IDs())
	}

	bad := filepath.Join(dir, "bad.yaml")
	doc := "units:\n  - unit_id: necro\n    max_hp: 1\n    role: Ranged\n    abilities:\n      - type: death_spawn\n        unit_id: ghost\n"
	if err := os.WriteFile(bad, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDefinitions(bad); !errors.Is(err, ErrUnknownDefinition) {
		t.Fatalf("expected dangling death_spawn rejected, got %v", err)
	}

	if _, err := LoadDefinitions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefinitionDocumentRoundTrip(t *testing.T) {
	def, _ := DefaultRegistry().Definition("elixir_golemite")
	back, err := def.Document().Definition()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	spawn, ok := FindAbility[DeathSpawn](back.Abilities)
	if !ok || spawn.UnitID != "elixir_blob" || spawn.Count != 2 || spawn.Radius != 20 {
		t.Fatalf("death spawn lost in conversion: %+v", spawn)
	}
	if back.Priority != PriorityBuildings || back.CanTarget != def.CanTarget {
		t.Fatalf("disposition lost: %+v", back)
	}
}
