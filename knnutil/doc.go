// Package knnutil is a convenience layer over the balltree SQL virtual
// table: it stores labeled samples and runs nearest neighbor and range
// queries through SQL.
package knnutil
