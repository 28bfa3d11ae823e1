package models

// DashboardStats holds aggregate counts over the guest table.
// CheckedIn + NotCheckedIn always equals Total.
type DashboardStats struct {
	Total        int
	CheckedIn    int
	NotCheckedIn int
	PlusOnes     int
}

// ComputeStats counts guests by check-in and plus-one state.
func ComputeStats(guests []Guest) DashboardStats {
	var s DashboardStats
	s.Total = len(guests)
	for i := range guests {
		if guests[i].CheckedIn {
			s.CheckedIn++
		}
		if guests[i].PlusOne {
			s.PlusOnes++
		}
	}
	s.NotCheckedIn = s.Total - s.CheckedIn
	return s
}
