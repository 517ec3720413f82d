package metrics

const (
	DeviceNightSleepsH = "The total number of night sleep periods entered"
	DeviceNightSleepsN = "clockservice_device_night_sleeps"
	DeviceRedrawsH     = "The total number of display redraws"
	DeviceRedrawsN     = "clockservice_device_redraws"

	SyncAttemptsH        = "The total number of time sync attempts"
	SyncAttemptsN        = "clockservice_sync_attempts"
	SyncConnectTimeoutsH = "The total number of sync attempts that failed to connect within the bound"
	SyncConnectTimeoutsN = "clockservice_sync_connect_timeouts"
	SyncFetchFailuresH   = "The total number of sync attempts without a plausible time within the bound"
	SyncFetchFailuresN   = "clockservice_sync_fetch_failures"
	SyncSuccessesH       = "The total number of successful time syncs"
	SyncSuccessesN       = "clockservice_sync_successes"
)
