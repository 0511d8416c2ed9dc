// Package redis persists questionnaire responses in Redis and coordinates session access
// across replicas with a SET NX based lock.
package redis
