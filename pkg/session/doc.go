/*
Package session implements reading progress management and persistence orchestration.

It serialises access to each reader's saved pointer across goroutines and,
with a distributed locker, across replicas. Manager.Hooks plugs it into a
playback session so that every pause point is saved.
*/
package session
