package domain

// DailyRiskState tracks one calendar day's running risk accounting.
// Owned by the daily risk governor; everyone else reads copies.
type DailyRiskState struct {
	Day         string  // UTC calendar day, DayKey format
	StopExits   int     // STOP exits recorded so far
	CumulativeR float64 // realized R summed over the day's closes
	Blocked     bool    // once set, the day never un-blocks
}
