// Package sqlindex exposes ball tree k-nearest-neighbor and range search as
// a SQLite virtual table.
//
// A table is created over a sample table holding (id, label, features):
//
//	CREATE VIRTUAL TABLE knn USING balltree(samples, leaf_size=8, kernel=euclidean);
//	SELECT id, label, distance FROM knn WHERE id MATCH '[1,2]' AND k = 3;
//	SELECT id, distance FROM knn WHERE id MATCH '[1,2]' AND radius = 0.5;
//
// The MATCH argument is a features BLOB, a JSON array, base64 features or a
// comma separated list. Trees are cached per database and configuration,
// persisted in index_storage, and invalidated by triggers on the sample
// table.
package sqlindex
