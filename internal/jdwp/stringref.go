package jdwp

const csStringReference = 10

const cmdStringValue = 1

// StringValue returns the UTF-8 contents of a java.lang.String object
// (StringReference.Value), the one command set needed to read back results
// of injected JS string literals and marshaled script text.
func (c *Conn) StringValue(obj ObjectID) (string, error) {
	e := c.newEncoder().writeObjectID(obj)
	d, err := c.send(csStringReference, cmdStringValue, e.bytes())
	if err != nil {
		return "", err
	}
	return d.readString(), nil
}
