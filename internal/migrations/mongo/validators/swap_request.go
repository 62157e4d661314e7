package validators

import "go.mongodb.org/mongo-driver/bson"

var SwapRequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"requester_id",
			"receiver_id",
			"offered_slot_id",
			"requested_slot_id",
			"status",
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

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"receiver_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"offered_slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"requested_slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"PENDING", "ACCEPTED", "REJECTED", "CANCELLED"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"closed_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
}
