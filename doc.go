/*
Package sheet-to-bq copies tabular data from Google Sheets documents into
BigQuery, keeping a timestamped history table for every load.

sheet-to-bq can be run from the command line but is really intended to be run
from a cron job or an HTTP scheduler to keep a set of BigQuery tables in sync
with the spreadsheet documents shared with a service account.

sheet-to-bq supports the following commands:

  - run, to import every shared spreadsheet document into BigQuery once
  - serve, to run an HTTP server that imports on POST /v1/import
  - version, to display the application version
*/
package sheettobq
