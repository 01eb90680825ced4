package driver

import (
	"testing"

	"go.uber.org/zap"

	"av-control-service/internal/model"
	pkgdriver "av-control-service/pkg/driver"
)

func stubFactory(device *model.Device, connectionConfig interface{}, logger *zap.Logger) (pkgdriver.DeviceDriver, error) {
	return nil, nil
}

func TestRegistryListsAndMatchesDrivers(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(model.BrandNEC, model.DeviceTypeProjector, "*", stubFactory)
	r.Register(model.BrandKramer, model.DeviceTypeSwitcher, "VP-734", stubFactory)

	if got := len(r.ListDrivers()); got != 2 {
		t.Fatalf("ListDrivers = %d entries, want 2", got)
	}

	if !r.IsSupported(model.BrandNEC, model.DeviceTypeProjector, "ME403U") {
		t.Fatal("wildcard model not matched")
	}
	if !r.IsSupported(model.BrandKramer, model.DeviceTypeSwitcher, "VP-734") {
		t.Fatal("exact model not matched")
	}
	if r.IsSupported(model.BrandKramer, model.DeviceTypeSwitcher, "VS-42") {
		t.Fatal("unregistered model matched without a wildcard entry")
	}
	if r.IsSupported(model.BrandSamsung, model.DeviceTypeTV, "") {
		t.Fatal("unregistered brand reported as supported")
	}
}
