package domain

// CanonicalBucket is one of the ten fixed allocation categories.
type CanonicalBucket string

const (
	BucketTeamFounder      CanonicalBucket = "team_founder"
	BucketAdvisorsPartners CanonicalBucket = "advisors_partner"
	BucketInvestors        CanonicalBucket = "investors"
	BucketPublicSales      CanonicalBucket = "public_sales"
	BucketAirdrop          CanonicalBucket = "airdrop"
	BucketCommunityRewards CanonicalBucket = "community_rewards"
	BucketListingLiquidity CanonicalBucket = "listing_liquidity"
	BucketEcosystemRD      CanonicalBucket = "ecosystem_rd"
	BucketTreasuryReserve  CanonicalBucket = "treasury_reserve"
	BucketUnknownOther     CanonicalBucket = "unknown"
)

// bucketOrder is the fixed presentation order.
var bucketOrder = []CanonicalBucket{
	BucketTeamFounder,
	BucketAdvisorsPartners,
	BucketInvestors,
	BucketPublicSales,
	BucketAirdrop,
	BucketCommunityRewards,
	BucketListingLiquidity,
	BucketEcosystemRD,
	BucketTreasuryReserve,
	BucketUnknownOther,
}

var bucketNames = map[CanonicalBucket]string{
	BucketTeamFounder:      "Team/Founder",
	BucketAdvisorsPartners: "Advisors/Partners",
	BucketInvestors:        "Investors",
	BucketPublicSales:      "Public Sales",
	BucketAirdrop:          "Airdrop",
	BucketCommunityRewards: "Community/Rewards",
	BucketListingLiquidity: "Listing/Liquidity",
	BucketEcosystemRD:      "Ecosystem/R&D",
	BucketTreasuryReserve:  "Treasury/Reserve",
	BucketUnknownOther:     "Unknown/Other",
}

// AllBuckets returns every bucket in display order.
func AllBuckets() []CanonicalBucket {
	out := make([]CanonicalBucket, len(bucketOrder))
	copy(out, bucketOrder)
	return out
}

// DisplayName returns the human-readable bucket name.
func (b CanonicalBucket) DisplayName() string {
	if name, ok := bucketNames[b]; ok {
		return name
	}
	return string(b)
}

// Order returns the display position, unknown values sort last.
func (b CanonicalBucket) Order() int {
	for i, v := range bucketOrder {
		if v == b {
			return i
		}
	}
	return len(bucketOrder)
}

// ParseBucket resolves a bucket from its identifier.
func ParseBucket(s string) (CanonicalBucket, bool) {
	b := CanonicalBucket(s)
	_, ok := bucketNames[b]
	return b, ok
}
