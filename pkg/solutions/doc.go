// Package solutions manages named ordered groupings of services:
// solution CRUD under team caps and slug uniqueness, plus ordered
// membership with roles.
package solutions
