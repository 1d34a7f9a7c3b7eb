// Package sitematrix resolves public wiki domains to the internal database
// names used by the Wikimedia replicas. The mapping comes from the MediaWiki
// sitematrix API on Meta-Wiki and is fetched once per Resolver.
package sitematrix
