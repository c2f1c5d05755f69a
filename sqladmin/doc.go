// Package sqladmin provides the balltree_admin virtual table used to
// rebuild persisted ball trees from SQL.
package sqladmin
