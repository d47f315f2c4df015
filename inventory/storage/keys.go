package storage

const (
	KeySerialNumber    = "serial_number"    // string
	KeyModel           = "model"            // string
	KeyIMEI            = "imei"             // []string
	KeyBuildDate       = "build_date"       // string
	KeyManufacture     = "manufacture_date" // string
	KeyManufactureConf = "manufacture_precision"
	KeyBackend         = "backend"      // string
	KeyLastScanID      = "last_scan_id" // string
	KeyModified        = "modified"     // time.Time

	// system facts are stored under their attribute names with this prefix.
	KeySystemPrefix = "system."
)
