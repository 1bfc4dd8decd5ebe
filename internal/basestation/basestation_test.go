package basestation

import "testing"

func TestSortStations(t *testing.T) {
	list := []Basestation{
		{ID: "ff:ff", Name: ""},
		{ID: "bb:bb", Name: "lhb-2B9F11A0"},
		{ID: "aa:aa", Name: "LHB-1D4E22C3"},
		{ID: "ee:ee", Name: ""},
		{ID: "cc:cc", Name: "LHB-0A0A0A0A"},
	}

	sortStations(list)

	wantIDs := []string{"cc:cc", "aa:aa", "bb:bb", "ee:ee", "ff:ff"}
	for i, want := range wantIDs {
		if list[i].ID != want {
			t.Errorf("position %d = %s (%q), want %s", i, list[i].ID, list[i].Name, want)
		}
	}
}

func TestSortStationsCaseInsensitive(t *testing.T) {
	list := []Basestation{
		{ID: "bb:bb", Name: "LHB-b"},
		{ID: "aa:aa", Name: "lhb-A"},
	}

	sortStations(list)

	if list[0].ID != "aa:aa" {
		t.Errorf("first = %s, want aa:aa (case-insensitive name order)", list[0].ID)
	}
}

func TestSortStationsStableOnEqualNames(t *testing.T) {
	list := []Basestation{
		{ID: "bb:bb", Name: "LHB-SAME"},
		{ID: "aa:aa", Name: "LHB-SAME"},
	}

	sortStations(list)

	if list[0].ID != "aa:aa" || list[1].ID != "bb:bb" {
		t.Errorf("equal names should fall back to ID order, got %v", []string{list[0].ID, list[1].ID})
	}
}
