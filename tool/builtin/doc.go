// Package builtin provides the stock tools and agents shipped with
// reactmesh: a calculator, today's date, a Wikipedia lookup and a people
// search agent built on it.
package builtin
