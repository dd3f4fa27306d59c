package wcs

const capabilitiesXML = `<?xml version="1.0" encoding="UTF-8"?>
<wcs:Capabilities xmlns:wcs="http://www.opengis.net/wcs/2.0" xmlns:ows="http://www.opengis.net/ows/2.0" version="2.0.1">
  <ows:ServiceIdentification><ows:Title>rasdaman</ows:Title></ows:ServiceIdentification>
  <wcs:Contents>
    <wcs:CoverageSummary><wcs:CoverageId>dem_europe</wcs:CoverageId><wcs:CoverageSubtype>RectifiedGridCoverage</wcs:CoverageSubtype></wcs:CoverageSummary>
    <wcs:CoverageSummary><wcs:CoverageId>landcover</wcs:CoverageId></wcs:CoverageSummary>
    <wcs:CoverageSummary><wcs:CoverageId> </wcs:CoverageId></wcs:CoverageSummary>
  </wcs:Contents>
</wcs:Capabilities>`

const describeXML = `<?xml version="1.0" encoding="UTF-8"?>
<wcs:CoverageDescriptions xmlns:wcs="http://www.opengis.net/wcs/2.0" xmlns:gml="http://www.opengis.net/gml/3.2"
    xmlns:gmlcov="http://www.opengis.net/gmlcov/1.0" xmlns:swe="http://www.opengis.net/swe/2.0">
  <wcs:CoverageDescription gml:id="dem_europe">
    <gml:boundedBy>
      <gml:Envelope srsName="http://www.opengis.net/def/crs/EPSG/0/3035" axisLabels="Y X" uomLabels="metre metre" srsDimension="2">
        <gml:lowerCorner>1000000 2000000</gml:lowerCorner>
        <gml:upperCorner>5500000 7000000</gml:upperCorner>
      </gml:Envelope>
    </gml:boundedBy>
    <wcs:CoverageId>dem_europe</wcs:CoverageId>
    <gmlcov:rangeType>
      <swe:DataRecord>
        <swe:field name="height">
          <swe:Quantity definition="http://www.opengis.net/def/dataType/OGC/0/float32">
            <swe:nilValues><swe:NilValues><swe:nilValue reason="nodata">-9999</swe:nilValue></swe:NilValues></swe:nilValues>
            <swe:uom code="m"/>
          </swe:Quantity>
        </swe:field>
      </swe:DataRecord>
    </gmlcov:rangeType>
  </wcs:CoverageDescription>
  <wcs:CoverageDescription gml:id="landcover">
    <gml:boundedBy>
      <gml:EnvelopeWithTimePeriod srsName="http://localhost:8080/def/crs-compound?1=http://localhost:8080/def/crs/EPSG/0/4326&amp;2=http://localhost:8080/def/crs/OGC/0/AnsiDate" axisLabels="Lat Long ansi" srsDimension="3">
        <gml:lowerCorner>35 -10 "2018-01-01T00:00:00.000Z"</gml:lowerCorner>
        <gml:upperCorner>70 30 "2018-01-01T00:00:00.000Z"</gml:upperCorner>
      </gml:EnvelopeWithTimePeriod>
    </gml:boundedBy>
    <wcs:CoverageId>landcover</wcs:CoverageId>
    <gmlcov:rangeType>
      <swe:DataRecord>
        <swe:field name="class"><swe:Category><swe:nilValues><swe:NilValues><swe:nilValue>0</swe:nilValue><swe:nilValue>255</swe:nilValue></swe:NilValues></swe:nilValues></swe:Category></swe:field>
      </swe:DataRecord>
    </gmlcov:rangeType>
  </wcs:CoverageDescription>
  <wcs:CoverageDescription gml:id="profile">
    <gml:boundedBy>
      <gml:Envelope srsName="http://www.opengis.net/def/crs/OGC/0/Index1D" axisLabels="i" srsDimension="1">
        <gml:lowerCorner>0</gml:lowerCorner>
        <gml:upperCorner>99</gml:upperCorner>
      </gml:Envelope>
    </gml:boundedBy>
    <wcs:CoverageId>profile</wcs:CoverageId>
  </wcs:CoverageDescription>
</wcs:CoverageDescriptions>`

const invalidSubsettingXML = `<?xml version="1.0" encoding="UTF-8"?>
<ows:ExceptionReport version="2.0.0" xmlns:ows="http://www.opengis.net/ows/2.0">
  <ows:Exception exceptionCode="InvalidSubsetting" locator="X">
    <ows:ExceptionText>Subsetting coordinate out of bounds.</ows:ExceptionText>
  </ows:Exception>
</ows:ExceptionReport>`
