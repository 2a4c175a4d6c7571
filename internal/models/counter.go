package models

// Counter is one per-prefix sequence row in the counters collection.
type Counter struct {
	Prefix string `bson:"prefix" json:"prefix"`
	Seq    int64  `bson:"seq" json:"seq"`
}
