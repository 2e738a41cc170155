package repository

const assetConstraintCypher = `
CREATE CONSTRAINT asset_key IF NOT EXISTS
FOR (a:Asset) REQUIRE (a.kind, a.assetId) IS UNIQUE
`

const insertAssetCypher = `
OPTIONAL MATCH (existing:Asset {kind: $kind, assetId: $id})
WITH existing
WHERE existing IS NULL
CREATE (a:Asset {kind: $kind, assetId: $id, body: $body, updatedAt: $updatedAt})
RETURN a.assetId AS assetId
`

const replaceAssetCypher = `
MATCH (a:Asset {kind: $kind, assetId: $id})
SET a.body = $body,
    a.updatedAt = $updatedAt
RETURN a.assetId AS assetId
`

const fetchAssetCypher = `
MATCH (a:Asset {kind: $kind, assetId: $id})
RETURN a.body AS body
`

const removeAssetCypher = `
MATCH (a:Asset {kind: $kind, assetId: $id})
WITH a, a.assetId AS assetId
DETACH DELETE a
RETURN assetId
`

const existsAssetCypher = `
OPTIONAL MATCH (a:Asset {kind: $kind, assetId: $id})
RETURN count(a) AS found
`

const listAssetsCypher = `
MATCH (a:Asset {kind: $kind})
RETURN a.body AS body
ORDER BY a.assetId
`

const ownedByCypher = `
MATCH (c:Asset {kind: $commodityKind})-[:OWNED_BY]->(:Asset {kind: $traderKind, assetId: $traderId})
RETURN c.body AS body
ORDER BY c.assetId
`

// Relationship types cannot be parameters, so each link picks its type through a FOREACH guard.
const projectEdgesCypher = `
MATCH (a:Asset {kind: $kind, assetId: $id})
OPTIONAL MATCH (a)-[old:OWNED_BY|ISSUED_BY|FOR_ORDER|ORDERED_BY|SUPPLIED_BY|INCLUDES|HANDLED_BY]->()
DELETE old
WITH DISTINCT a
CALL {
	WITH a
	UNWIND $links AS link
	MATCH (target:Asset {kind: link.kind, assetId: link.id})
	FOREACH (_ IN CASE WHEN link.rel = "OWNED_BY" THEN [1] ELSE [] END | MERGE (a)-[:OWNED_BY]->(target))
	FOREACH (_ IN CASE WHEN link.rel = "ISSUED_BY" THEN [1] ELSE [] END | MERGE (a)-[:ISSUED_BY]->(target))
	FOREACH (_ IN CASE WHEN link.rel = "FOR_ORDER" THEN [1] ELSE [] END | MERGE (a)-[:FOR_ORDER]->(target))
	FOREACH (_ IN CASE WHEN link.rel = "ORDERED_BY" THEN [1] ELSE [] END | MERGE (a)-[:ORDERED_BY]->(target))
	FOREACH (_ IN CASE WHEN link.rel = "SUPPLIED_BY" THEN [1] ELSE [] END | MERGE (a)-[:SUPPLIED_BY]->(target))
	FOREACH (_ IN CASE WHEN link.rel = "INCLUDES" THEN [1] ELSE [] END | MERGE (a)-[:INCLUDES]->(target))
}
CALL {
	WITH a
	UNWIND $handlers AS handler
	MATCH (trader:Asset {kind: "Trader", assetId: handler.id})
	CREATE (a)-[:HANDLED_BY {seq: handler.seq, timestamp: handler.timestamp, city: handler.city}]->(trader)
}
RETURN a.assetId AS assetId
`
