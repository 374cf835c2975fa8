package store

import "go.mongodb.org/mongo-driver/mongo/options"

func mongoFindSortByPriority() *options.FindOptions {
	return options.Find().SetSort(map[string]int{"priority": 1})
}

func mongoUpsert() *options.UpdateOptions {
	upsert := true
	return &options.UpdateOptions{Upsert: &upsert}
}
