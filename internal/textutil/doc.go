// Package textutil turns user-supplied names into tokens that are safe to use
// as file names and object keys.
package textutil
