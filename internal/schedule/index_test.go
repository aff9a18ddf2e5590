package schedule

import "testing"

func clock(t *testing.T, s string) int {
	t.Helper()
	m, err := ParseClock(s)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", s, err)
	}
	return m
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"10:00", 600, false},
		{" 23:59 ", 1439, false},
		{"09:30:00", 570, false},
		{"24:00", 0, true},
		{"10", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWindow_DeliverByWrapsMidnight(t *testing.T) {
	w := Window{OrderBy: 22 * 60, Duration: 180}
	if got := w.DeliverBy(); got != "01:00" {
		t.Errorf("DeliverBy() = %s, want 01:00", got)
	}
	if got := FormatClock(-30); got != "23:30" {
		t.Errorf("FormatClock(-30) = %s, want 23:30", got)
	}
}

func TestWeekdayWrap(t *testing.T) {
	if NextWeekday(7) != 1 || NextWeekday(3) != 4 {
		t.Error("NextWeekday does not wrap 7 to 1")
	}
	if PrevWeekday(1) != 7 || PrevWeekday(4) != 3 {
		t.Error("PrevWeekday does not wrap 1 to 7")
	}
}

func sampleIndex(t *testing.T) *Index {
	return NewIndex([]Window{
		{Warehouse: "Main Warehouse", PickupPoint: "PV1", Weekday: 1, OrderBy: clock(t, "14:00"), Duration: 240},
		{Warehouse: "Main Warehouse", PickupPoint: "PV1", Weekday: 1, OrderBy: clock(t, "10:00"), Duration: 180},
		{Warehouse: "Main Warehouse", PickupPoint: "PV1", Weekday: 2, OrderBy: clock(t, "09:00"), Duration: 120},
		{Warehouse: "Main Warehouse", PickupPoint: "PV1", Weekday: 7, OrderBy: clock(t, "12:00"), Duration: 60},
		{Warehouse: "Main Warehouse", PickupPoint: "", Weekday: 3, OrderBy: clock(t, "11:00"), Duration: 60},
		{Warehouse: "North Depot", PickupPoint: "", Weekday: 1, OrderBy: clock(t, "08:00"), Duration: 60},
		{Warehouse: "", Weekday: 1, OrderBy: 0},
		{Warehouse: "Broken", Weekday: 9, OrderBy: 0},
	})
}

func TestIndex_Match(t *testing.T) {
	ix := sampleIndex(t)

	tests := []struct {
		name        string
		warehouse   string
		pv          string
		weekday     int
		at          string
		wantOrderBy string
		wantWeekday int
		wantNextDay bool
	}{
		{"EarlyMorning", "Main Warehouse", "PV1", 1, "07:15", "10:00", 1, false},
		{"ExactCutoffIsInclusive", "Main Warehouse", "PV1", 1, "10:00", "10:00", 1, false},
		{"JustAfterCutoff", "Main Warehouse", "PV1", 1, "10:01", "14:00", 1, false},
		{"AfterLastCutoffRollsOver", "Main Warehouse", "PV1", 1, "18:00", "09:00", 2, true},
		{"SundayWrapsToMonday", "Main Warehouse", "PV1", 7, "13:00", "10:00", 1, true},
		{"CaseAndSpaceInsensitive", "  main WAREHOUSE ", "pv1", 1, "09:00", "10:00", 1, false},
		{"WarehouseWideFallback", "Main Warehouse", "PV9", 3, "10:30", "11:00", 3, false},
		{"FirstWordAlias", "North", "", 1, "07:00", "08:00", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ix.Match(tt.warehouse, tt.pv, tt.weekday, clock(t, tt.at))
			if !ok {
				t.Fatal("Expected a match")
			}
			if got := m.Window.OrderByClock(); got != tt.wantOrderBy {
				t.Errorf("Expected window %s, got %s", tt.wantOrderBy, got)
			}
			if m.Weekday != tt.wantWeekday || m.NextDay != tt.wantNextDay {
				t.Errorf("Expected weekday %d nextDay %v, got %d %v", tt.wantWeekday, tt.wantNextDay, m.Weekday, m.NextDay)
			}
		})
	}
}

func TestIndex_OrderFrom(t *testing.T) {
	ix := sampleIndex(t)

	m, _ := ix.Match("Main Warehouse", "PV1", 1, clock(t, "12:00"))
	if m.OrderFrom != clock(t, "10:00") {
		t.Errorf("Expected previous cutoff 10:00, got %s", FormatClock(m.OrderFrom))
	}

	// First Monday window: previous cutoff is Sunday's last one.
	m, _ = ix.Match("Main Warehouse", "PV1", 1, clock(t, "08:00"))
	if m.OrderFrom != clock(t, "12:00") {
		t.Errorf("Expected previous cutoff 12:00, got %s", FormatClock(m.OrderFrom))
	}
}

func TestIndex_NoMatch(t *testing.T) {
	ix := sampleIndex(t)

	if _, ok := ix.Match("Unknown", "PV1", 1, 600); ok {
		t.Error("Expected no match for unknown warehouse")
	}
	// Wednesday window exists only warehouse-wide, Thursday has nothing.
	if _, ok := ix.Match("Main Warehouse", "PV9", 3, clock(t, "12:00")); ok {
		t.Error("Expected no match when the next day has no windows")
	}
	if _, ok := ix.Match("Main Warehouse", "PV1", 0, 600); ok {
		t.Error("Expected no match for invalid weekday")
	}

	var nilIndex *Index
	if _, ok := nilIndex.Match("Main Warehouse", "PV1", 1, 600); ok {
		t.Error("Expected nil index to match nothing")
	}
}

func TestIndex_HasSchedule(t *testing.T) {
	ix := sampleIndex(t)

	tests := []struct {
		warehouse, pv string
		want          bool
	}{
		{"Main Warehouse", "PV1", true},
		{"Main Warehouse", "PV2", true}, // warehouse-wide windows apply
		{"main warehouse", "unspecified", true},
		{"Unknown", "PV1", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := ix.HasSchedule(tt.warehouse, tt.pv); got != tt.want {
			t.Errorf("HasSchedule(%q, %q) = %v, want %v", tt.warehouse, tt.pv, got, tt.want)
		}
	}

	if ix.Len() != 6 {
		t.Errorf("Expected 6 valid windows, got %d", ix.Len())
	}
}

func TestIndex_DropsUnknownDeliveryType(t *testing.T) {
	ix := NewIndex([]Window{
		{Warehouse: "Main", Weekday: 1, OrderBy: 600, DeliveryType: DeliveryCourier},
		{Warehouse: "Main", Weekday: 2, OrderBy: 600},
		{Warehouse: "Main", Weekday: 3, OrderBy: 600, DeliveryType: "drone"},
	})
	if ix.Len() != 2 {
		t.Errorf("Expected 2 valid windows, got %d", ix.Len())
	}
	if _, ok := ix.Match("Main", "PV1", 3, 540); ok {
		t.Error("Expected window with unknown delivery type to be ignored")
	}
}
