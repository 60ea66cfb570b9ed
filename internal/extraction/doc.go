// Package extraction derives topical tags from conversation text.
//
// RakeExtractor implements the Rapid Automatic Keyword Extraction scheme:
// text is split into candidate phrases at stopwords and punctuation, each
// word is scored by degree/frequency, and a phrase scores the sum of its
// words. Phrases below the minimum score, and phrases containing a banned
// greeting or pleasantry, are dropped.
package extraction
