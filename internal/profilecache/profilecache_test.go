package profilecache

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "missing.json"))
	if _, ok := c.Get(Fingerprint{VendorID: 1}); ok {
		t.Fatal("expected an empty cache")
	}
}

func TestPutThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	c := Load(path)

	fp := Fingerprint{VendorID: 0x054C, ProductID: 0x09CC, UsagePage: 1, Usage: 5}
	entry := Entry{Fingerprint: fp, ReportLength: 64, FeatureMode: false, ProfileName: "Wireless Controller"}
	if err := c.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := c.Get(fp)
	if !ok || got != entry {
		t.Fatalf("Get() = (%+v, %v), want (%+v, true)", got, ok, entry)
	}

	reloaded := Load(path)
	got2, ok := reloaded.Get(fp)
	if !ok || got2 != entry {
		t.Fatalf("reloaded Get() = (%+v, %v), want (%+v, true)", got2, ok, entry)
	}
}

func TestPutOverwritesSameFingerprint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	c := Load(path)
	fp := Fingerprint{VendorID: 1, ProductID: 2}

	c.Put(Entry{Fingerprint: fp, ReportLength: 32})
	c.Put(Entry{Fingerprint: fp, ReportLength: 64})

	got, ok := c.Get(fp)
	if !ok || got.ReportLength != 64 {
		t.Fatalf("Get() = %+v, want ReportLength 64", got)
	}
}
