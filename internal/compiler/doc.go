// Package compiler turns CUE portal declarations into ir.PortalSpec values
// and builds attribute portals from them.
//
// A schema file declares portals under the top-level "portal" field:
//
//	portal: Order: {
//		table:       "orders"
//		primary_key: ["id"]
//		attributes: {
//			id:     "int"
//			status: {type: "string", nullable: true, max_length: 20}
//		}
//		relationships: items: {
//			target: "Item"
//			joins: [{from: "id", to: "orderId"}]
//		}
//	}
//
// An attribute is either a type name or a struct with a type field.
// Compilation keeps declaration order, which becomes column order.
package compiler
