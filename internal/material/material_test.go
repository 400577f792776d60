package material

import (
	"math"
	"testing"
)

func TestSapphireAt300K(t *testing.T) {
	m := Sapphire(300)

	t.Run("conductivity near bulk value", func(t *testing.T) {
		// sapphire is ~33 W/(m·K) at room temperature
		if m.Kz < 0.25 || m.Kz > 0.45 {
			t.Errorf("expected Kz around 0.33 W/(cm·K), got %g", m.Kz)
		}
		if m.Kr != m.Kz {
			t.Errorf("sapphire is isotropic, got Kr=%g Kz=%g", m.Kr, m.Kz)
		}
	})

	t.Run("heat capacity near bulk value", func(t *testing.T) {
		if m.C < 2.5 || m.C > 3.5 {
			t.Errorf("expected C around 3.1 J/(cm³·K), got %g", m.C)
		}
	})

	t.Run("diffusivity derived from Kz and C", func(t *testing.T) {
		want := m.Kz / m.C
		if m.Diffusivity() != want {
			t.Errorf("Diffusivity() = %g, want %g", m.Diffusivity(), want)
		}
	})
}

func TestGoldTemperatureDependence(t *testing.T) {
	cold := Gold(80)
	warm := Gold(300)

	if cold.Kz <= warm.Kz {
		t.Errorf("film conductivity should fall with temperature: k(80)=%g k(300)=%g", cold.Kz, warm.Kz)
	}
	if cold.C >= warm.C {
		t.Errorf("heat capacity should rise with temperature: C(80)=%g C(300)=%g", cold.C, warm.C)
	}
}

func TestIn2Se3Anisotropy(t *testing.T) {
	m := In2Se3(300)
	if m.Kr <= m.Kz {
		t.Errorf("expected Kr > Kz for a van der Waals layered material, got Kr=%g Kz=%g", m.Kr, m.Kz)
	}
	if ratio := m.Kr / m.Kz; math.Abs(ratio-50) > 1e-9 {
		t.Errorf("expected 50x anisotropy, got %g", ratio)
	}
}

func TestCatalogLookup(t *testing.T) {
	cat := BuiltinCatalog()

	t.Run("case insensitive", func(t *testing.T) {
		src, err := cat.Lookup("Sapphire")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := src(300).Name; got != "Sapphire" {
			t.Errorf("expected Sapphire, got %s", got)
		}
	})

	t.Run("aliases resolve", func(t *testing.T) {
		gold, err := cat.Lookup("gold")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		au, err := cat.Lookup("Au")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gold(300) != au(300) {
			t.Error("gold and Au should resolve to the same material")
		}
	})

	t.Run("unknown name errors", func(t *testing.T) {
		if _, err := cat.Lookup("unobtainium"); err == nil {
			t.Error("expected error for unknown material")
		}
	})

	t.Run("overlay replaces entries", func(t *testing.T) {
		cat.Add("default", Fixed(Material{Name: "custom", Kr: 1, Kz: 1, C: 1}))
		src, err := cat.Lookup("default")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if src(300).Name != "custom" {
			t.Error("expected overlay to replace the builtin entry")
		}
	})
}

func TestFixedIgnoresTemperature(t *testing.T) {
	src := Fixed(Material{Name: "x", Kr: 2, Kz: 3, C: 4})
	if src(80) != src(700) {
		t.Error("Fixed source should be temperature independent")
	}
}
