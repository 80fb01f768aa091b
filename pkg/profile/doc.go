// Package profile derives each target's friend list from its edge set and
// resolves every distinct friend's self-reported location exactly once.
//
// Profiles come from the snippets the graph API returned inline with the
// edge lists, so extraction never touches the network. A shared store can
// span all cities so a friend seen in Portland is not resolved again for
// Baltimore.
package profile
