// Package mongodb connects to the MongoDB deployment that backs the
// credential store when database.driver is "mongo".
package mongodb
