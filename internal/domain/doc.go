// Package domain models daily climate-station observations and the quality
// engine that scores them.
//
// # Data Source
//
// Observations follow the NOAA Global Historical Climatology Network Daily
// (GHCN-Daily) long format: one row per (station, date, element). The pipeline
// accepts either a local CSV export in that shape or data fetched from the
// Open-Meteo archive API and reshaped into it.
//
// # GHCN-Daily Conventions
//
// Columns:
//
//	station_id, date, element, value, measurement_flag, quality_flag, source_flag
//	Only the first four are required. The three flag columns are carried
//	through untouched and never scored.
//
// Date format:
//
//	"YYYY-MM-DD", interpreted as a calendar date in UTC.
//
// Element codes:
//
//	TMAX  daily maximum temperature (°C)
//	TMIN  daily minimum temperature (°C)
//	TOBS  temperature at time of observation (°C)
//	PRCP  precipitation (mm)
//	SNOW  snowfall (mm)
//	SNWD  snow depth (mm)
//	EVAP  evaporation (mm)
//	MXPN  maximum pan temperature
//	MNPN  minimum pan temperature
//	PGTM  peak gust time (HHMM)
//	WDMV  24-hour wind movement (km)
//
// Missing values:
//
//	An empty value cell is a null observation. Nulls are measured by the
//	completeness metric; they are never dropped by the engine.
//
// # Quality Score
//
// The composite score is a weighted sum of five dimensions, clamped to
// [0, 100]:
//
//	Completeness        30  max(0, 30 * (1 - null% / max_null_percentage))
//	Outlier rate        25  max(0, 25 * (1 - outlier% / max_outlier_percentage))
//	Temperature range   10  all-or-nothing; inclusive [temp_min_valid, temp_max_valid]
//	Station coverage    25  min(25, 2 * distinct stations)
//	Schema stability    10  all of station_id, date, element, value present
//
// An empty observation set scores exactly 0. Data-quality problems lower the
// score; they never surface as errors. Only structural problems (invalid
// thresholds, a header with no value column) are returned as errors.
//
// See [Engine.Assess] for the single entry point that produces a [Report].
package domain
