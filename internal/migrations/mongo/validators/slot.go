package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"owner",
			"title",
			"start_time",
			"end_time",
			"status",
			"version",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"owner": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"BUSY", "SWAPPABLE", "SWAP_PENDING"},
			},

			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
