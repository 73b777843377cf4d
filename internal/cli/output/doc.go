// Package output renders picoretain-cli results as a table, JSON or YAML.
//
// Table output reads struct fields through their json tags; a field tagged
// table:"wide" only appears in wide mode and table:"-" never does.
package output
